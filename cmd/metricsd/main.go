// metricsd serves the bot's metrics for Prometheus.
package main

import "github.com/avairebot/metricsd/pkg/cli"

func main() {
	cli.Execute()
}
