package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quarter 年度季度值对象
type Quarter struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

// NewQuarter 创建季度，校验取值范围
func NewQuarter(year, quarter int) (Quarter, error) {
	q := Quarter{Year: year, Quarter: quarter}
	if err := q.Validate(); err != nil {
		return Quarter{}, err
	}
	return q, nil
}

// QuarterOf 计算时间所在的季度
func QuarterOf(t time.Time) Quarter {
	return Quarter{
		Year:    t.Year(),
		Quarter: int(t.Month()-1)/3 + 1,
	}
}

// Validate 校验季度取值
func (q Quarter) Validate() error {
	if q.Year < 2000 || q.Year > 2200 {
		return fmt.Errorf("invalid quarter year: %d", q.Year)
	}
	if q.Quarter < 1 || q.Quarter > 4 {
		return fmt.Errorf("invalid quarter number: %d", q.Quarter)
	}
	return nil
}

// String 格式化为 2026Q1 形式
func (q Quarter) String() string {
	return fmt.Sprintf("%dQ%d", q.Year, q.Quarter)
}

// Bounds 返回季度的起止时间（含起不含止）
func (q Quarter) Bounds() (time.Time, time.Time) {
	start := time.Date(q.Year, time.Month((q.Quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 3, 0)
}

// ParseQuarter 解析 2026Q1 形式的季度字符串
func ParseQuarter(raw string) (Quarter, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	parts := strings.Split(normalized, "Q")
	if len(parts) != 2 {
		return Quarter{}, fmt.Errorf("invalid quarter format: %s", raw)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Quarter{}, fmt.Errorf("invalid quarter year: %s", raw)
	}
	number, err := strconv.Atoi(parts[1])
	if err != nil {
		return Quarter{}, fmt.Errorf("invalid quarter number: %s", raw)
	}
	return NewQuarter(year, number)
}
