package config

var Presets = map[string]*Config{
	"smoke": {
		Particles: 500, Partitions: 2, Steps: 5, GroupSize: 16,
		HaloWidth: 0.2, Theta: 0.5, Eps: 0.01, G: 1,
		Krho: DefaultKrho, EtaAcc: DefaultEtaAcc, MaxDt: DefaultMaxDt,
		Backend: "cpu", Seed: 1,
	},
	"accuracy": {
		Particles: 5000, Partitions: 2, Steps: 20, GroupSize: 32,
		HaloWidth: 0.2, Theta: 0.2, Eps: 0.002, G: 1,
		Krho: DefaultKrho, EtaAcc: DefaultEtaAcc, MaxDt: DefaultMaxDt,
		Backend: "auto", Seed: 1,
	},
	"throughput": {
		Particles: 100000, Partitions: 8, Steps: 10, GroupSize: 128,
		HaloWidth: 0.05, Theta: 0.8, Eps: 0.01, G: 1,
		Krho: DefaultKrho, EtaAcc: DefaultEtaAcc, MaxDt: DefaultMaxDt,
		Backend: "auto", Seed: 1,
	},
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
