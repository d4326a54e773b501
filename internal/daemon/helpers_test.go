package daemon

import (
	"github.com/connorhough/mediakeyd/internal/config"
	"github.com/connorhough/mediakeyd/internal/sysinfo"
	"github.com/spf13/viper"
)

func testConfig() *config.Config {
	cfg, err := config.LoadFrom(viper.New())
	if err != nil {
		panic(err)
	}
	return cfg
}

func sysinfoDevice() sysinfo.Device {
	return sysinfo.Device{Manufacturer: "Test", Model: "Board"}
}
