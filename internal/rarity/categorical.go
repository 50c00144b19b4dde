package rarity

// Weighted 分类表中的一行 (label, weight)
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// Categorical 累积阈值采样：按声明顺序累加权重，返回第一个累积值 >= r 的项
type Categorical[T any] struct {
	items    []Weighted[T]
	fallback T
}

// NewCategorical 按给定顺序累积权重
func NewCategorical[T any](items []Weighted[T], fallback T) Categorical[T] {
	return Categorical[T]{items: items, fallback: fallback}
}

// Pick 把 [0,1) 上的均匀随机数映射到表中；权重和的浮点误差导致未命中时返回 fallback
func (c Categorical[T]) Pick(r float64) T {
	cumulative := 0.0
	for _, it := range c.items {
		cumulative += it.Weight
		if r <= cumulative {
			return it.Value
		}
	}
	return c.fallback
}

// Weight 返回某项的配置权重
func (c Categorical[T]) Weight(match func(T) bool) float64 {
	for _, it := range c.items {
		if match(it.Value) {
			return it.Weight
		}
	}
	return 0
}
