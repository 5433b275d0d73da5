package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/slopeside/waiverboard/internal/simulate"
)

// Default configuration constants.
const (
	defaultCount       = 20
	defaultLiabilityPc = 40
	defaultInterval    = 250 * time.Millisecond
	defaultTimeout     = 10 * time.Second
	defaultRunTimeout  = 5 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		count       = flag.Int("count", defaultCount, "Number of notifications to post")
		liabilityPc = flag.Int("liability", defaultLiabilityPc, "Percent of notifications using the liability template")
		intakeID    = flag.String("intake", "tmpl-intake", "Intake template id")
		liabilityID = flag.String("liability-template", "tmpl-liability", "Liability template id")
		interval    = flag.Duration("interval", defaultInterval, "Delay between notifications")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:             *baseURL,
		Count:               *count,
		LiabilityPercent:    *liabilityPc,
		IntakeTemplateID:    *intakeID,
		LiabilityTemplateID: *liabilityID,
		Interval:            *interval,
		Timeout:             *timeout,
	}

	res, err := simulate.Run(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	fmt.Printf("sent=%d accepted=%d duplicates=%d ignored=%d failures=%d\n",
		res.Sent, res.Accepted, res.Duplicates, res.Ignored, res.Failures)
}
