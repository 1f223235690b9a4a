package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jason-ratigan/college-pickem-prediction-sub001/internal/logger"
	"github.com/jason-ratigan/college-pickem-prediction-sub001/pkg/engine"
	"github.com/jason-ratigan/college-pickem-prediction-sub001/pkg/server"
)

const usage = `usage: pickem [-config file] <command> [args]

commands:
  serve [-addr :8080]                  run the prediction HTTP API
  regress <season>                     run the season regression and update weights
  predict <season> <home> <away>       predict one matchup
  trace <season> <home> <away>         predict with full calculation verification
  weights <season>                     show the current weight set
  history <season>                     show the weight change log
`

func main() {
	logger.SetShowDateTime(true)

	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if *configPath != "" {
		if _, err := engine.LoadConfigFile(*configPath); err != nil {
			logger.Fatal("Failed to load configuration:", err)
		}
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := engine.InitSchema(); err != nil {
		logger.Fatal("Failed to initialize database schema:", err)
	}
	defer engine.CloseDatabase()

	eng := engine.NewEngine()

	var err error
	switch args[0] {
	case "serve":
		err = runServe(eng, args[1:])
	case "regress":
		err = runRegress(eng, args[1:])
	case "predict":
		err = runPredict(eng, args[1:], false)
	case "trace":
		err = runPredict(eng, args[1:], true)
	case "weights":
		err = runWeights(eng, args[1:])
	case "history":
		err = runHistory(eng, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Command failed:", err)
		os.Exit(1)
	}
}

func runServe(eng *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return server.New(eng, *addr).ListenAndServe()
}

func runRegress(eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("regress requires a season argument")
	}

	analysis, err := eng.PerformRegressionAnalysis(args[0], "cli")
	if err != nil {
		return err
	}
	return printJSON(analysis)
}

func runPredict(eng *engine.Engine, args []string, withTrace bool) error {
	if len(args) < 3 {
		return fmt.Errorf("predict requires season, home and away arguments")
	}

	prediction, report, err := eng.Predict(args[0], args[1], args[2])
	if err != nil {
		return err
	}

	if withTrace {
		return printJSON(map[string]any{
			"prediction": prediction,
			"report":     report,
		})
	}
	return printJSON(prediction)
}

func runWeights(eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("weights requires a season argument")
	}

	season, err := engine.ParseSeason(args[0])
	if err != nil {
		return err
	}
	weights, err := eng.Weights.GetCurrentWeights(season)
	if err != nil {
		return err
	}
	return printJSON(weights)
}

func runHistory(eng *engine.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("history requires a season argument")
	}

	season, err := engine.ParseSeason(args[0])
	if err != nil {
		return err
	}
	history, err := eng.Weights.GetWeightHistory(season, 100)
	if err != nil {
		return err
	}
	return printJSON(history)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
