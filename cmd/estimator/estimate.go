package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"estimator/internal/apperr"
	"estimator/internal/estimate"
)

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "оценить ТЗ из файла и вывести JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "title",
				Aliases:  []string{"t"},
				Usage:    "Название проекта",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "spec-file",
				Aliases:  []string{"f"},
				Usage:    "Файл с текстом ТЗ (- для stdin)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "start",
				Usage: "Дата начала проекта, YYYY-MM-DD",
			},
			&cli.BoolFlag{
				Name:  "compact",
				Usage: "JSON без отступов",
			},
		},
		Action: runEstimate,
	}
}

func runEstimate(c *cli.Context) error {
	specText, err := readSpec(c.String("spec-file"), os.Stdin)
	if err != nil {
		return err
	}

	// Логи в stderr, чтобы stdout содержал только JSON.
	a, err := newApp(os.Stderr)
	if err != nil {
		return err
	}

	resp, err := a.service.Estimate(c.Context, estimate.Request{
		Title:        c.String("title"),
		SpecText:     specText,
		ProjectStart: c.String("start"),
	})
	if err != nil {
		return fmt.Errorf("%s: %s", apperr.KindOf(err), describe(err))
	}

	return writeResponse(c.App.Writer, resp, !c.Bool("compact"))
}

func readSpec(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read spec: %w", err)
	}
	return string(data), nil
}

func writeResponse(w io.Writer, resp estimate.Response, indent bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resp)
}

func describe(err error) string {
	msg := apperr.MessageOf(err)
	for _, d := range apperr.DetailsOf(err) {
		msg += "\n  - " + d
	}
	return msg
}
