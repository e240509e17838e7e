package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/shallowclouds/unitsdb/backend"
	"github.com/shallowclouds/unitsdb/config"
	"github.com/shallowclouds/unitsdb/ingest"
	"github.com/shallowclouds/unitsdb/metric"
)

var (
	compiledTimeString string
	version            string
)

// pointRecord is one JSON-lines input record.
type pointRecord struct {
	Timestamp   int64                  `json:"timestamp"`
	Measurement string                 `json:"measurement"`
	Tags        map[string]string      `json:"tags"`
	Fields      map[string]interface{} `json:"fields"`
}

// fieldValues narrows JSON numbers to int64 or float64 so integer fields
// keep their integer typing on the wire. Everything else passes through
// for the ingester to validate.
func fieldValues(raw map[string]interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(raw))
	for key, val := range raw {
		num, ok := val.(json.Number)
		if !ok {
			fields[key] = val
			continue
		}
		if !strings.ContainsAny(num.String(), ".eE") {
			if i, err := num.Int64(); err == nil {
				fields[key] = i
				continue
			}
		}
		if f, err := num.Float64(); err == nil {
			fields[key] = f
			continue
		}
		fields[key] = num.String()
	}
	return fields
}

func feed(r io.Reader, ing *ingest.Ingester) error {
	decoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r)
	decoder.UseNumber()
	line := 0
	for {
		var record pointRecord
		if err := decoder.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.WithMessagef(err, "bad input record #%d", line+1)
		}
		line++
		point := metric.Point{
			Timestamp:   record.Timestamp,
			Measurement: record.Measurement,
			Tags:        record.Tags,
			Fields:      fieldValues(record.Fields),
		}
		if err := ing.Append(point); err != nil {
			return errors.WithMessagef(err, "bad input record #%d", line)
		}
	}
}

func main() {
	app := cli.App{
		Name:        "unitsdb",
		HelpName:    "unitsdb",
		Usage:       "unitsdb --config <config_file_path> --input <points_file_path>",
		Version:     fmt.Sprintf("\ngit version: %s\nbuild time: %s", version, compiledTimeString),
		Description: fmt.Sprintf("Universal time-series database ingestion client, build %s", version),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "--config /path/to/config/file",
				EnvVars: []string{
					"CONFIG_FILE",
				},
				Required: false,
				Value:    "conf/config.yaml",
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "--input /path/to/points.jsonl, \"-\" for stdin",
				Value:   "-",
			},
		},
		Action: func(ctx *cli.Context) error {
			configFile := ctx.String("config")
			if configFile != "" {
				config.SetConfigFilePath(configFile)
			}
			conf := config.Config()

			client, err := backend.NewClient(conf.BackendConfig())
			if err != nil {
				logrus.WithError(err).Fatal("failed to create backend client")
			}
			ing, err := ingest.NewIngester(client, conf.Batch)
			if err != nil {
				logrus.WithError(err).Fatal("failed to create ingester")
			}

			input := os.Stdin
			if name := ctx.String("input"); name != "-" {
				file, err := os.Open(name)
				if err != nil {
					logrus.WithError(err).Fatal("failed to open input file")
				}
				defer file.Close()
				input = file
			}

			if err := feed(input, ing); err != nil {
				logrus.WithError(err).Fatal("failed to read points")
			}
			if report := ing.Commit(); report.Err != nil {
				logrus.WithError(report.Err).Error("final commit failed")
			}
			logrus.Info(ing.Report())
			return nil
		},
		Authors: []*cli.Author{
			{
				Name:  "Yorling",
				Email: "ishallowcloud@gmail.com",
			},
		},
		UseShortOptionHandling: true,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("failed to run commands")
	}
}
