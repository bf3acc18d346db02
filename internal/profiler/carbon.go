package profiler

// HardwareProfile describes inference hardware efficiency (FLOPS per watt).
type HardwareProfile struct {
	Name         string
	FlopsPerWatt float64
}

// Grid intensities in gCO2e per kWh.
var gridIntensities = map[string]float64{
	"GLOBAL_AVG": 475.0,
	"US_AVG":     380.0,
	"EU_AVG":     255.0,
	"SWEDEN":     45.0,
	"COAL_HEAVY": 820.0,
}

// Real-world FP16 inference estimates.
var hardwareProfiles = map[string]HardwareProfile{
	"NVIDIA_A100": {Name: "NVIDIA A100", FlopsPerWatt: 150.0e9},
	"NVIDIA_H100": {Name: "NVIDIA H100", FlopsPerWatt: 250.0e9},
	"CONSUMER_GPU": {Name: "RTX 4090", FlopsPerWatt: 50.0e9},
}

// Emissions is the estimated environmental impact of one invocation.
type Emissions struct {
	TotalTokens  int     `json:"total_tokens"`
	EnergyKWh    float64 `json:"energy_kwh"`
	CarbonGrams  float64 `json:"carbon_g"`
	PhoneCharges float64 `json:"phone_charges"`
	Method       string  `json:"calculation_method"`
}

// CarbonCalculator estimates energy and carbon for a token count, preferring
// a per-model energy factor from the cost table and falling back to a
// FLOPs-based estimate from the hardware profile.
type CarbonCalculator struct {
	hardware      HardwareProfile
	gridIntensity float64
	profiler      *TokenProfiler
}

func NewCarbonCalculator(hardware string, region string, profiler *TokenProfiler) *CarbonCalculator {
	hw, ok := hardwareProfiles[hardware]
	if !ok {
		hw = hardwareProfiles["NVIDIA_A100"]
	}

	intensity, ok := gridIntensities[region]
	if !ok {
		intensity = gridIntensities["GLOBAL_AVG"]
	}

	return &CarbonCalculator{
		hardware:      hw,
		gridIntensity: intensity,
		profiler:      profiler,
	}
}

// Estimate computes impact metrics for totalTokens. modelName is optional and
// used to look up a per-model energy factor.
func (c *CarbonCalculator) Estimate(totalTokens int, modelName string) Emissions {
	energyKWh := 0.0
	method := "unknown"

	if modelName != "" {
		if info, ok := c.profiler.ModelInfo(modelName); ok && info.EnergyFactorWhPer1K > 0 {
			energyWh := float64(totalTokens) / 1000 * info.EnergyFactorWhPer1K
			energyKWh = energyWh / 1000
			method = "model_reference"
		} else if ok && info.ParamCountBillions > 0 {
			// FLOPs formula: 2 * parameters * tokens
			totalFlops := 2 * info.ParamCountBillions * 1e9 * float64(totalTokens)
			energyJoules := totalFlops / c.hardware.FlopsPerWatt
			energyKWh = energyJoules / 3_600_000
			method = "hardware_flops"
		}
	}

	carbonGrams := energyKWh * c.gridIntensity

	// A standard phone battery holds ~15 Wh.
	phoneCharges := energyKWh / 0.015

	return Emissions{
		TotalTokens:  totalTokens,
		EnergyKWh:    energyKWh,
		CarbonGrams:  carbonGrams,
		PhoneCharges: phoneCharges,
		Method:       method,
	}
}
