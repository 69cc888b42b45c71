// Package config provides configuration loading for tangle applications.
//
// Configuration is read from tangle.yaml at the project root, with
// TANGLE_* environment variables taking precedence.
//
// # Configuration File Structure
//
//	debug: false
//	devtools:
//	  enabled: true
//	  addr: "127.0.0.1:6363"
//	store:
//	  path: "tangle.db"
//	metrics:
//	  namespace: "tangle"
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Devtools:", cfg.Devtools.Addr)
package config
