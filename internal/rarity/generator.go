// Package rarity 生成 WORD-WORD-NUMBER 形式的推荐码，等级、长度和号码类别独立抽取
package rarity

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Source 生成器使用的随机源，*rand.Rand 满足该接口
type Source interface {
	Float64() float64
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
func (globalSource) IntN(n int) int   { return rand.IntN(n) }

// ExistsFunc 判断推荐码是否已被占用（含历史推荐码）
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Options 生成器参数，零值使用默认值
type Options struct {
	MaxAttempts       int
	MaxCommonAttempts int
	Source            Source
	Now               func() time.Time
}

// Draw 一次抽取的结果
type Draw struct {
	Code     string
	Tier     Tier
	Color    string
	Word     string
	Length   int
	Number   int
	Pattern  Pattern
	Fallback bool
}

// Generator 推荐码生成器
type Generator struct {
	mu  sync.Mutex
	src Source
	now func() time.Time

	maxAttempts       int
	maxCommonAttempts int

	tiers    Categorical[Tier]
	lengths  Categorical[int]
	patterns map[int]Categorical[Pattern]
	specials map[int]map[int]bool
}

// NewGenerator 未指定 Source 时使用全局随机源
func NewGenerator(opts Options) *Generator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 100
	}
	if opts.MaxCommonAttempts <= 0 {
		opts.MaxCommonAttempts = 1000
	}
	if opts.Source == nil {
		opts.Source = globalSource{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	g := &Generator{
		src:               opts.Source,
		now:               opts.Now,
		maxAttempts:       opts.MaxAttempts,
		maxCommonAttempts: opts.MaxCommonAttempts,
		tiers:             NewCategorical(tierTable, TierCommon),
		lengths:           NewCategorical(lengthTable, 2),
		patterns:          make(map[int]Categorical[Pattern], len(patternTable)),
		specials:          make(map[int]map[int]bool, len(patternNumbers)),
	}

	for length, table := range patternTable {
		fallback := table[len(table)-1].Value
		g.patterns[length] = NewCategorical(table, fallback)
	}
	for length, classes := range patternNumbers {
		set := make(map[int]bool)
		for _, nums := range classes {
			for _, n := range nums {
				set[n] = true
			}
		}
		g.specials[length] = set
	}
	return g
}

// Draw 独立抽取等级、位数、数字模式，纯函数，不检查唯一性
func (g *Generator) Draw() Draw {
	g.mu.Lock()
	defer g.mu.Unlock()

	tier := g.tiers.Pick(g.src.Float64())
	length := g.lengths.Pick(g.src.Float64())
	pattern := g.patterns[length].Pick(g.src.Float64())
	number := g.number(length, pattern)

	words := tierWords[tier]
	color := words.Colors[g.src.IntN(len(words.Colors))]
	word := words.Words[g.src.IntN(len(words.Words))]

	return Draw{
		Code:    Format(color, word, number, length),
		Tier:    tier,
		Color:   color,
		Word:    word,
		Length:  length,
		Number:  number,
		Pattern: pattern,
	}
}

// Generate 重复 Draw 直到得到未占用的推荐码。连续 MaxAttempts 次冲突后，
// 最后一次结果的号码替换为当前时间对 100 取模，不保证唯一。
func (g *Generator) Generate(ctx context.Context, exists ExistsFunc) (Draw, error) {
	var d Draw
	for i := 0; i < g.maxAttempts; i++ {
		d = g.Draw()
		taken, err := exists(ctx, d.Code)
		if err != nil {
			return Draw{}, err
		}
		if !taken {
			return d, nil
		}
	}

	suffix := int(g.now().Unix() % 100)
	d.Number = suffix
	d.Length = 2
	d.Pattern = Classify(2, suffix)
	d.Code = Format(d.Color, d.Word, suffix, 2)
	d.Fallback = true
	return d, nil
}

func (g *Generator) number(length int, pattern Pattern) int {
	if pattern != PatternCommon {
		nums := patternNumbers[length][pattern]
		return nums[g.src.IntN(len(nums))]
	}

	bounds := numberRange[length]
	span := bounds[1] - bounds[0] + 1
	special := g.specials[length]
	for i := 0; i < g.maxCommonAttempts; i++ {
		n := bounds[0] + g.src.IntN(span)
		if !special[n] {
			return n
		}
	}

	// 拒绝采样耗尽：取范围内第一个非特殊数字
	for n := bounds[0]; n <= bounds[1]; n++ {
		if !special[n] {
			return n
		}
	}
	return bounds[0]
}

// Format 组合推荐码，数字按位数补零
func Format(color, word string, number, length int) string {
	return fmt.Sprintf("%s-%s-%0*d", color, word, length, number)
}

// Classify 返回数字在给定位数下所属的模式类别
func Classify(length, number int) Pattern {
	for pattern, nums := range patternNumbers[length] {
		for _, n := range nums {
			if n == number {
				return pattern
			}
		}
	}
	return PatternCommon
}

// Probability 综合稀有度，即等级、长度、号码类别三者概率之积
func (g *Generator) Probability(d Draw) float64 {
	tier := g.tiers.Weight(func(t Tier) bool { return t == d.Tier })
	length := g.lengths.Weight(func(l int) bool { return l == d.Length })
	p, ok := g.patterns[d.Length]
	if !ok {
		return 0
	}
	pattern := p.Weight(func(pt Pattern) bool { return pt == d.Pattern })
	return tier * length * pattern
}
