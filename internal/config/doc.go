// Package config provides loading and environment overlay for peerchan
// runtime configuration. It exposes a Default() baseline, JSON and YAML
// file loading, and a PEERCHAN_* environment overlay.
//
// Example:
//
//	_ = config.LoadDotEnv(".env")
//	cfg, err := config.Load("/etc/peerchan.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{DataDir: config.DefaultDataDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
package config
