package data

import (
	_ "embed"
)

// DemoSeed is the default data set loaded by `casectl seed`
//
//go:embed seed/demo.yaml
var DemoSeed []byte
