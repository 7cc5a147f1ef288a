package config

type AppConfig struct {
	ArenaConfig *ArenaConfig
	GrindConfig *GrindConfig
}

func New() *AppConfig {
	return &AppConfig{
		ArenaConfig: NewArenaConfig(),
		GrindConfig: NewGrindConfig(),
	}
}
