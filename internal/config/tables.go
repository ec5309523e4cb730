package config

// The keyword tables and thresholds below are replaceable data, not
// load-bearing semantics: sources.yaml may override any of them.

// Weights are the scoring factor weights; they should sum to 1.
type Weights struct {
	Recency   float64 `yaml:"recency"`
	Surprise  float64 `yaml:"surprise"`
	Vendor    float64 `yaml:"vendor"`
	Technical float64 `yaml:"technical"`
	Business  float64 `yaml:"business"`
}

// ScoringTable drives the scoring engine. StarThresholds are ascending
// cutoffs on the weighted base score for stars 2..5; below the first
// cutoff an item gets 1 star.
type ScoringTable struct {
	Weights        Weights   `yaml:"weights"`
	StarThresholds []float64 `yaml:"star_thresholds"`

	Vendors   []string `yaml:"vendors"`
	Technical []string `yaml:"technical"`
	Business  []string `yaml:"business"`
	Surprise  []string `yaml:"surprise"`
}

func (t ScoringTable) isZero() bool {
	return len(t.StarThresholds) == 0 && len(t.Vendors) == 0
}

// Vendor allow-list is shared by the scoring engine (prominence factor),
// the section classifier and the "vendor" section keywords.
var defaultVendors = []string{
	"Infineon", "Wolfspeed", "onsemi", "ROHM", "ローム",
	"STMicroelectronics", "Renesas", "ルネサス", "Texas Instruments",
	"NXP", "Toshiba", "東芝", "Mitsubishi Electric", "三菱電機",
	"Fuji Electric", "富士電機", "Navitas", "Transphorm",
}

func DefaultScoring() ScoringTable {
	return ScoringTable{
		Weights: Weights{
			Recency:   0.40,
			Surprise:  0.25,
			Vendor:    0.20,
			Technical: 0.10,
			Business:  0.05,
		},
		// Equivalent to stars = 1 + round(base*4).
		StarThresholds: []float64{0.125, 0.375, 0.625, 0.875},
		Vendors:        defaultVendors,
		Technical: []string{
			"SiC", "GaN", "IGBT", "MOSFET", "パワー半導体",
			"power semiconductor", "wide bandgap", "ワイドバンドギャップ",
			"gate driver", "ゲートドライバ",
		},
		Business: []string{
			"EV", "電気自動車", "充電器", "inverter", "インバータ",
			"converter", "コンバータ", "power supply", "電源",
		},
		Surprise: []string{
			"突破", "leak", "爆", "倍", "破る", "unprecedented", "重大",
			"障害", "停止", "重大脆弱性", "過去最大", "新製品", "量産",
			"recall", "shortage", "acquisition", "breakthrough",
		},
	}
}

// Leaf is one taxonomy field with its match keywords, in priority order.
type Leaf struct {
	Key      string   `yaml:"key"`
	Keywords []string `yaml:"keywords"`
}

// Axis is one independent classification dimension; leaves are tried in
// order and the first match wins for that axis.
type Axis struct {
	Name   string `yaml:"name"`
	Leaves []Leaf `yaml:"leaves"`
}

type Taxonomy struct {
	Axes []Axis `yaml:"axes"`
}

// FieldKeys returns every leaf key plus the "general" fallback, in
// axis/table order. This is the fixed set of per-field documents.
func (t Taxonomy) FieldKeys() []string {
	keys := make([]string, 0, 20)
	for _, ax := range t.Axes {
		for _, l := range ax.Leaves {
			keys = append(keys, l.Key)
		}
	}
	return append(keys, GeneralField)
}

// GeneralField is the catch-all bucket for items matching no axis.
const GeneralField = "general"

func DefaultTaxonomy() Taxonomy {
	return Taxonomy{Axes: []Axis{
		{Name: "device", Leaves: []Leaf{
			{Key: "power", Keywords: []string{
				"sic", "silicon carbide", "炭化ケイ素", "gan", "gallium nitride",
				"窒化ガリウム", "igbt", "mosfet", "superjunction", "power semiconductor",
				"パワー半導体", "gate driver", "wide bandgap",
			}},
			{Key: "memory", Keywords: []string{
				"dram", "nand", "flash memory", "hbm", "メモリ", "sram", "mram",
			}},
			{Key: "logic", Keywords: []string{
				"cpu", "gpu", "soc", "asic", "fpga", "microcontroller", "mcu",
				"processor", "ロジック半導体",
			}},
			{Key: "analog", Keywords: []string{
				"analog", "アナログ", "op-amp", "data converter", "pmic", "rf front",
			}},
			{Key: "sensor", Keywords: []string{
				"sensor", "センサ", "image sensor", "cmos sensor", "lidar", "mems",
			}},
		}},
		{Name: "process", Leaves: []Leaf{
			{Key: "lithography", Keywords: []string{
				"euv", "lithography", "リソグラフィ", "露光", "asml", "nanometer node",
				"3nm", "2nm",
			}},
			{Key: "packaging", Keywords: []string{
				"packaging", "パッケージ", "chiplet", "advanced packaging", "cowos",
				"3d stacking", "interposer", "bonding",
			}},
			{Key: "materials", Keywords: []string{
				"wafer", "ウェハ", "substrate", "基板", "photoresist", "レジスト",
				"epitaxial", "エピタキシャル", "ingot",
			}},
			{Key: "equipment", Keywords: []string{
				"製造装置", "deposition", "etching", "エッチング", "cmp",
				"inspection", "検査装置", "tokyo electron", "applied materials",
			}},
		}},
		{Name: "market", Leaves: []Leaf{
			{Key: "automotive", Keywords: []string{
				"ev", "electric vehicle", "電気自動車", "bev", "phev", "automotive",
				"車載", "onboard charger", "obc", "traction inverter", "chademo",
			}},
			{Key: "datacenter", Keywords: []string{
				"data center", "データセンター", "server power", "サーバー電源",
				"ai accelerator", "hyperscale",
			}},
			{Key: "energy", Keywords: []string{
				"solar", "太陽光", "pv", "wind", "風力", "蓄電池", "battery storage",
				"grid", "power conditioner", "パワーコンディショナー", "pcs",
			}},
			{Key: "industrial", Keywords: []string{
				"industrial", "産業機器", "factory automation", "robotics", "ロボット",
				"motor drive", "モータ",
			}},
			{Key: "consumer", Keywords: []string{
				"smartphone", "スマートフォン", "laptop", "fast charger", "急速充電器",
				"usb-c", "wearable",
			}},
		}},
		{Name: "industry", Leaves: []Leaf{
			{Key: "foundry", Keywords: []string{
				"foundry", "ファウンドリ", "tsmc", "samsung foundry", "fab",
				"新工場", "capacity expansion", "増産",
			}},
			{Key: "supply_chain", Keywords: []string{
				"supply chain", "サプライチェーン", "shortage", "供給不足",
				"inventory", "在庫", "logistics",
			}},
			{Key: "investment", Keywords: []string{
				"investment", "投資", "funding", "ipo", "acquisition", "買収",
				"merger", "subsidy", "補助金", "chips act",
			}},
			{Key: "geopolitics", Keywords: []string{
				"export control", "輸出規制", "sanction", "制裁", "tariff", "関税",
				"geopolitic", "economic security", "経済安全保障",
			}},
		}},
	}}
}

// SectionTable drives the section labels of latest.json. SNS membership
// is decided by source kind, not keywords.
type SectionTable struct {
	Tech        []string `yaml:"tech"`
	Application []string `yaml:"application"`
	Vendor      []string `yaml:"vendor"`
}

func (t SectionTable) isZero() bool {
	return len(t.Tech) == 0 && len(t.Application) == 0 && len(t.Vendor) == 0
}

func DefaultSections() SectionTable {
	sc := DefaultScoring()
	return SectionTable{
		Tech:        sc.Technical,
		Application: sc.Business,
		Vendor:      sc.Vendors,
	}
}
