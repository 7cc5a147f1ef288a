package config

type GrindConfig struct {
	Runs     int
	Seed     int64
	Parallel int
	Quiet    bool
	Dump     bool
}

func NewGrindConfig() *GrindConfig {
	return &GrindConfig{
		Runs:     100,
		Seed:     1,
		Parallel: 1,
		Quiet:    true,
	}
}
