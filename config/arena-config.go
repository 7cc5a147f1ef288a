package config

import "go-memgrind/pkg/arena"

type ArenaConfig struct {
	Capacity int
	// MapFile backs the arena with a shared file mapping when set.
	MapFile string
}

func NewArenaConfig() *ArenaConfig {
	return &ArenaConfig{
		Capacity: arena.DefaultCapacity,
	}
}
