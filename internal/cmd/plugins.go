package cmd

// Host lines, their adapters and the post-processors register themselves.
import (
	_ "github.com/dosanma1/forge-booster/internal/adapter/v41"
	_ "github.com/dosanma1/forge-booster/internal/adapter/v70"
	_ "github.com/dosanma1/forge-booster/internal/compression/cwebp"
	_ "github.com/dosanma1/forge-booster/internal/compression/processedres"
	_ "github.com/dosanma1/forge-booster/internal/host/v41"
	_ "github.com/dosanma1/forge-booster/internal/host/v70"
)
