package rarity

// Tier 推荐码稀有度等级
type Tier string

const (
	TierMythic    Tier = "MYTHIC"
	TierLegendary Tier = "LEGENDARY"
	TierEpic      Tier = "EPIC"
	TierRare      Tier = "RARE"
	TierUncommon  Tier = "UNCOMMON"
	TierCommon    Tier = "COMMON"
)

// Pattern 号码类别
type Pattern string

const (
	PatternLucky     Pattern = "lucky"
	PatternRegular   Pattern = "regular"
	PatternUltraRare Pattern = "ultra_rare"
	PatternRare      Pattern = "rare"
	PatternUncommon  Pattern = "uncommon"
	PatternCommon    Pattern = "common"
)

// TierWords 等级对应的颜色词和名词
type TierWords struct {
	Colors []string
	Words  []string
}

var tierTable = []Weighted[Tier]{
	{TierMythic, 0.005},
	{TierLegendary, 0.03},
	{TierEpic, 0.06},
	{TierRare, 0.14},
	{TierUncommon, 0.25},
	{TierCommon, 0.515},
}

var tierWords = map[Tier]TierWords{
	TierMythic: {
		Colors: []string{"GOLD", "RAINBOW", "COSMIC", "DIVINE", "CELESTIAL", "ETERNAL"},
		Words:  []string{"SATOSHI", "WHALE", "MOON", "LEGEND", "TITAN", "INFINITY"},
	},
	TierLegendary: {
		Colors: []string{"DIAMOND", "PLATINUM", "LASER", "CRYSTAL", "PRISMATIC", "RADIANT"},
		Words:  []string{"LAMBO", "ROCKET", "BULL", "APE", "HODL", "DRAGON", "PHOENIX"},
	},
	TierEpic: {
		Colors: []string{"VIOLET", "AMETHYST", "ORCHID", "MAGENTA", "INDIGO", "ROYAL"},
		Words:  []string{"COMET", "NOVA", "METEOR", "THUNDER", "LIGHTNING", "TEMPEST", "STORM"},
	},
	TierRare: {
		Colors: []string{"SAPPHIRE", "AZURE", "COBALT", "NAVY", "OCEAN", "STEEL"},
		Words:  []string{"STAR", "GALAXY", "ORBIT", "STELLAR", "QUANTUM", "NEBULA", "COSMIC"},
	},
	TierUncommon: {
		Colors: []string{"EMERALD", "JADE", "FOREST", "LIME", "MINT", "OLIVE"},
		Words:  []string{"BLAZE", "FROST", "SHADOW", "CLOUD", "ECHO", "FLASH", "SPARK"},
	},
	TierCommon: {
		Colors: []string{"GRAY", "SILVER", "ASH", "SLATE", "SMOKE", "STONE", "IRON"},
		Words:  []string{"WAVE", "WIND", "FIRE", "LEAF", "RIVER", "SAND", "SKY", "DAWN"},
	},
}

var lengthTable = []Weighted[int]{
	{1, 0.05},
	{2, 0.85},
	{3, 0.10},
}

// numberRange 每种位数对应 common 池的取值范围
var numberRange = map[int][2]int{
	1: {0, 9},
	2: {10, 99},
	3: {100, 999},
}

var patternTable = map[int][]Weighted[Pattern]{
	1: {
		{PatternLucky, 0.30},
		{PatternRegular, 0.70},
	},
	2: {
		{PatternUltraRare, 0.055},
		{PatternRare, 0.067},
		{PatternUncommon, 0.178},
		{PatternCommon, 0.70},
	},
	3: {
		{PatternUltraRare, 0.0055},
		{PatternRare, 0.0055},
		{PatternUncommon, 0.0155},
		{PatternCommon, 0.9735},
	},
}

// patternNumbers 各特殊号码类别的成员；PatternCommon 没有成员，即范围内其余号码
var patternNumbers = map[int]map[Pattern][]int{
	1: {
		PatternLucky:   {7, 8, 9},
		PatternRegular: {0, 1, 2, 3, 4, 5, 6},
	},
	2: {
		PatternUltraRare: {69, 42, 88, 77, 99},
		PatternRare:      {11, 22, 33, 44, 55, 66},
		PatternUncommon:  {12, 23, 34, 45, 56, 67, 78, 89, 21, 32, 43, 54, 65, 76, 87, 98},
	},
	3: {
		PatternUltraRare: {420, 666, 888, 777, 999},
		PatternRare:      {111, 222, 333, 444, 555},
		PatternUncommon:  {123, 234, 345, 456, 567, 678, 789, 321, 432, 543, 654, 765, 876, 987},
	},
}

// Tiers 按声明顺序返回等级及其权重
func Tiers() []Weighted[Tier] {
	out := make([]Weighted[Tier], len(tierTable))
	copy(out, tierTable)
	return out
}
