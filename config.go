package lunar

import (
	"log"
	"os"

	"github.com/spf13/viper"
)

var (
	cfgLoaded = false
	config    = _lunarconfig{}
)

// _lunarconfig is a "hidden" struct, just use `lunarConfig`
type _lunarconfig struct {
	gtol, ftol, qtol, αtol, β0 float64
	restoreIter, optimizeIter  int
	conjugate, verbose         bool
}

// lunarConfig returns the optimizer configuration. The defaults below are
// the documented ones; an optional conf.toml in the directory pointed to by
// the LUNAR_CONFIG environment variable overrides them.
func lunarConfig() _lunarconfig {
	if cfgLoaded {
		return config
	}
	viper.SetDefault("tolerances.constraint", 5e-8)
	viper.SetDefault("tolerances.cost", 1e-15)
	viper.SetDefault("tolerances.optimality", 2e-15)
	viper.SetDefault("tolerances.linesearch", 1e-6)
	viper.SetDefault("sgra.beta", 1.0)
	viper.SetDefault("sgra.max_restore_iterations", 100)
	viper.SetDefault("sgra.max_optimize_iterations", 100)
	viper.SetDefault("sgra.conjugate", false)
	viper.SetDefault("sgra.verbose", false)
	if confPath := os.Getenv("LUNAR_CONFIG"); confPath != "" {
		viper.SetConfigName("conf")
		viper.AddConfigPath(confPath)
		if err := viper.ReadInConfig(); err != nil {
			log.Printf("[warning] could not read %s/conf.toml, using defaults: %s", confPath, err)
		}
	}
	config = _lunarconfig{
		gtol:         viper.GetFloat64("tolerances.constraint"),
		ftol:         viper.GetFloat64("tolerances.cost"),
		qtol:         viper.GetFloat64("tolerances.optimality"),
		αtol:         viper.GetFloat64("tolerances.linesearch"),
		β0:           viper.GetFloat64("sgra.beta"),
		restoreIter:  viper.GetInt("sgra.max_restore_iterations"),
		optimizeIter: viper.GetInt("sgra.max_optimize_iterations"),
		conjugate:    viper.GetBool("sgra.conjugate"),
		verbose:      viper.GetBool("sgra.verbose"),
	}
	cfgLoaded = true
	return config
}
