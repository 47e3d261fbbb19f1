package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/siena/internal"
	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/parser"
	"github.com/starford/siena/internal/record"
	"github.com/starford/siena/internal/recordservice"
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the MCP server over stdio",
			Action: serve,
		},
		{
			Name:      "query",
			Usage:     "Print the records of a collection as JSON",
			ArgsUsage: "<collection>",
			Flags: append(filterFlags(),
				&cli.StringFlag{Name: "sort", Usage: "Key to sort by"},
				&cli.BoolFlag{Name: "desc", Usage: "Sort descending"},
				&cli.IntFlag{Name: "page", Usage: "1-based page number"},
				&cli.IntFlag{Name: "page-size", Usage: "Records per page"},
				&cli.IntFlag{Name: "limit", Usage: "Maximum number of records"},
				&cli.IntFlag{Name: "offset", Usage: "Number of records to skip"},
			),
			Action: queryAction,
		},
		{
			Name:      "get",
			Usage:     "Print one record as JSON",
			ArgsUsage: "<collection> <id>",
			Action:    getAction,
		},
		{
			Name:      "set",
			Usage:     "Set fields on every matching record",
			ArgsUsage: "<collection>",
			Flags:     append(filterFlags(), fieldFlag()),
			Action:    setAction,
		},
		{
			Name:      "create",
			Usage:     "Create a record; :id in the id becomes a UUID",
			ArgsUsage: "<collection> <id>",
			Flags:     []cli.Flag{fieldFlag()},
			Action:    createAction,
		},
		{
			Name:      "delete",
			Usage:     "Delete every matching record",
			ArgsUsage: "<collection>",
			Flags:     filterFlags(),
			Action:    deleteAction,
		},
		{
			Name:      "search",
			Usage:     "Search records through the SQLite index",
			ArgsUsage: "<text>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "collection", Usage: "Restrict to one collection"},
				&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum hits"},
			},
			Action: searchAction,
		},
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "where", Usage: "Keep records where `KEY=VALUE`"},
		&cli.StringSliceFlag{Name: "where-not", Usage: "Drop records where `KEY=VALUE`"},
		&cli.StringSliceFlag{Name: "any", Usage: "Keep records where any of `K1|K2=VALUE`"},
		&cli.StringSliceFlag{Name: "has", Usage: "Keep records with `KEY`"},
		&cli.StringSliceFlag{Name: "has-not", Usage: "Keep records without `KEY`"},
		&cli.StringSliceFlag{Name: "match", Usage: "Keep records where `KEY=REGEXP` matches"},
	}
}

func fieldFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "field",
		Aliases: []string{"f"},
		Usage:   "Field to set as `KEY=VALUE`; VALUE is YAML (42, true, [a, b], \"42\")",
	}
}

func withService(cmd *cli.Command, fn func(*recordservice.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	backend, err := internal.Open(cfg, internal.NewLogger(cfg))
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(backend.Service)
}

func requestFrom(cmd *cli.Command) (recordservice.Request, error) {
	if cmd.NArg() < 1 {
		return recordservice.Request{}, fmt.Errorf("collection is required: %w", apperr.ErrInvalidArgument)
	}
	req := recordservice.Request{Collection: cmd.Args().Get(0)}

	pairs := []struct {
		flag string
		op   string
	}{
		{"where", recordservice.OpIs},
		{"where-not", recordservice.OpIsNot},
		{"any", recordservice.OpAnyIs},
		{"match", recordservice.OpMatches},
	}
	for _, p := range pairs {
		for _, raw := range cmd.StringSlice(p.flag) {
			key, value, err := splitAssign(raw)
			if err != nil {
				return recordservice.Request{}, err
			}
			f := recordservice.Filter{Op: p.op, Key: key, Value: value}
			if p.op == recordservice.OpAnyIs {
				f.Key, f.Keys = "", strings.Split(key, "|")
			}
			req.Filters = append(req.Filters, f)
		}
	}
	for _, key := range cmd.StringSlice("has") {
		req.Filters = append(req.Filters, recordservice.Filter{Op: recordservice.OpHas, Key: key})
	}
	for _, key := range cmd.StringSlice("has-not") {
		req.Filters = append(req.Filters, recordservice.Filter{Op: recordservice.OpHasNot, Key: key})
	}
	return req, nil
}

func splitAssign(raw string) (string, string, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected KEY=VALUE, got %q: %w", raw, apperr.ErrInvalidArgument)
	}
	return key, value, nil
}

func fieldsFrom(cmd *cli.Command) ([]record.Field, error) {
	var fields []record.Field
	for _, raw := range cmd.StringSlice("field") {
		key, text, err := splitAssign(raw)
		if err != nil {
			return nil, err
		}
		v, err := parser.ParseValue(text)
		if err != nil {
			return nil, err
		}
		fields = append(fields, record.Set(key, v))
	}
	return fields, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func queryAction(ctx context.Context, cmd *cli.Command) error {
	req, err := requestFrom(cmd)
	if err != nil {
		return err
	}
	req.Sort = cmd.String("sort")
	if cmd.Bool("desc") {
		req.Order = recordservice.OrderDesc
	}
	req.Page = int(cmd.Int("page"))
	req.PageSize = int(cmd.Int("page-size"))
	req.Limit = int(cmd.Int("limit"))
	req.Offset = int(cmd.Int("offset"))

	return withService(cmd, func(svc *recordservice.Service) error {
		res, err := svc.Query(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

func getAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 2 {
		return fmt.Errorf("collection and id are required: %w", apperr.ErrInvalidArgument)
	}
	return withService(cmd, func(svc *recordservice.Service) error {
		rec, err := svc.Get(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
		if err != nil {
			return err
		}
		return printJSON(rec)
	})
}

func setAction(ctx context.Context, cmd *cli.Command) error {
	req, err := requestFrom(cmd)
	if err != nil {
		return err
	}
	fields, err := fieldsFrom(cmd)
	if err != nil {
		return err
	}
	return withService(cmd, func(svc *recordservice.Service) error {
		n, err := svc.Set(ctx, req, fields)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "updated: %d\n", n)
		return err
	})
}

func createAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 2 {
		return fmt.Errorf("collection and id are required: %w", apperr.ErrInvalidArgument)
	}
	fields, err := fieldsFrom(cmd)
	if err != nil {
		return err
	}
	return withService(cmd, func(svc *recordservice.Service) error {
		rec, err := svc.Create(ctx, cmd.Args().Get(0), cmd.Args().Get(1), fields)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "created: %s/%s\n", rec.Collection, rec.ID)
		return err
	})
}

func deleteAction(ctx context.Context, cmd *cli.Command) error {
	req, err := requestFrom(cmd)
	if err != nil {
		return err
	}
	return withService(cmd, func(svc *recordservice.Service) error {
		n, err := svc.Delete(ctx, req)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "deleted: %d\n", n)
		return err
	})
}

func searchAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("search text is required: %w", apperr.ErrInvalidArgument)
	}
	return withService(cmd, func(svc *recordservice.Service) error {
		hits, err := svc.Search(ctx, cmd.String("collection"), cmd.Args().Get(0), int(cmd.Int("limit")))
		if err != nil {
			return err
		}
		return printJSON(hits)
	})
}
