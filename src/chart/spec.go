// spec.go
package chart

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 图表类型
type Kind string

const (
	KindDemographic Kind = "demographic"
	KindFamilies    Kind = "families"
	KindAgeDivision Kind = "age_division"
)

// Kinds 按仪表盘展示顺序排列
var Kinds = []Kind{KindDemographic, KindFamilies, KindAgeDivision}

var ErrUnknownKind = errors.New("未知的图表类型")

// ParseKind 解析图表类型, 忽略大小写和首尾空白, 允许用 - 代替 _
func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	for _, k := range Kinds {
		if string(k) == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Question 仪表盘上每个图表回答的问题
func (k Kind) Question() string {
	switch k {
	case KindDemographic:
		return "Were children in third class more likely to survive than adult men in second class?"
	case KindFamilies:
		return "Which families had the most passengers on board and did larger families have higher survival rates?"
	case KindAgeDivision:
		return "Did passengers older than their class median survive less often?"
	}
	return ""
}

// Spec 渲染无关的图表描述, 可直接序列化为 JSON
type Spec struct {
	Kind    Kind          `json:"kind"`
	Title   string        `json:"title"`
	XAxis   string        `json:"x_axis"`
	YAxis   string        `json:"y_axis"`
	ColorBy string        `json:"color_by"`
	Percent bool          `json:"percent"` // Y 轴为 0~1 的比例
	Bars    []Bar         `json:"bars"`
	Legend  []LegendEntry `json:"legend"`
}

// Bar 一根柱子
type Bar struct {
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	Text     string  `json:"text"`
	Color    string  `json:"color"`
	Category string  `json:"category,omitempty"`
}

type LegendEntry struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Empty 没有任何柱子
func (s Spec) Empty() bool {
	return len(s.Bars) == 0
}
