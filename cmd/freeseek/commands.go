package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	freeseek "github.com/freeseek/freeseek-go"
	"github.com/freeseek/freeseek-go/config"
	"github.com/freeseek/freeseek-go/optimizer"
	"github.com/freeseek/freeseek-go/util"
	"github.com/freeseek/freeseek-go/version"
)

func runConfigure(_ context.Context, a *app, args []string) error {
	fs := a.commandFlags("configure")
	apiKey := fs.String("api-key", "", "API key (required)")
	baseURL := fs.String("base-url", "", "API base URL")
	path := fs.String("path", "", "file to write (default: --config, or ~/.freeseek.yaml)")
	if done, err := a.parse(fs, args); done || err != nil {
		return err
	}
	key := util.SanitizeEnvValue(*apiKey)
	if key == "" {
		return usagef("configure: --api-key is required")
	}

	target := util.Coalesce(*path, a.configFile)
	if target == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		target = p
	}

	cfg := config.Default()
	if _, err := os.Stat(target); err == nil {
		loaded, err := config.Load(config.WithConfigFile(target), config.WithoutValidation())
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	cfg.APIKey = key
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
		cfg.AuthURL = ""
		cfg.ApplyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(target, &cfg); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Configuration written to %s (api key %s)\n", target, util.MaskSecret(key, 4))
	return nil
}

// inferFlags are the flags shared by infer and stream.
type inferFlags struct {
	model    *string
	data     *string
	optimize *bool
	priority *string
}

func addInferFlags(a *app, name string) (*inferFlags, func([]string) (bool, error)) {
	fs := a.commandFlags(name)
	f := &inferFlags{
		model:    fs.StringP("model", "m", "", "model id (required)"),
		data:     fs.StringP("data", "d", "", "JSON object payload, or @file to read it from a file (required)"),
		optimize: fs.Bool("optimize", false, "let the optimizer pick the model tier and shape the prompt"),
		priority: fs.String("priority", "", "optimizer priority: speed, accuracy or balanced"),
	}
	return f, func(args []string) (bool, error) {
		if done, err := a.parse(fs, args); done || err != nil {
			return done, err
		}
		if *f.model == "" || *f.data == "" {
			return false, usagef("%s: --model and --data are required", name)
		}
		return false, nil
	}
}

func (f *inferFlags) payload() (map[string]any, error) {
	raw := []byte(*f.data)
	if path, ok := strings.CutPrefix(*f.data, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		raw = b
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, usagef("--data must be a JSON object: %v", err)
	}
	return data, nil
}

func (f *inferFlags) apply(cfg *config.Config) {
	if *f.optimize {
		cfg.Optimizer.Enabled = true
	}
	if *f.priority != "" {
		cfg.Optimizer.Priority = optimizer.Priority(*f.priority)
	}
}

func runInfer(ctx context.Context, a *app, args []string) error {
	f, parse := addInferFlags(a, "infer")
	if done, err := parse(args); done || err != nil {
		return err
	}
	data, err := f.payload()
	if err != nil {
		return err
	}
	client, err := a.newClient(ctx, f.apply)
	if err != nil {
		return err
	}
	result, err := client.Infer(ctx, *f.model, data)
	if err != nil {
		return err
	}
	return a.printJSON(result)
}

func runStream(ctx context.Context, a *app, args []string) error {
	f, parse := addInferFlags(a, "stream")
	if done, err := parse(args); done || err != nil {
		return err
	}
	data, err := f.payload()
	if err != nil {
		return err
	}
	client, err := a.newClient(ctx, f.apply)
	if err != nil {
		return err
	}
	s, err := client.StreamInfer(ctx, *f.model, data)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.stdout)
	for chunk, err := range s.All() {
		if err != nil {
			return err
		}
		if err := enc.Encode(chunk); err != nil {
			return err
		}
	}
	if n := s.Skipped(); n > 0 {
		fmt.Fprintf(a.stderr, "skipped %d undecodable lines\n", n)
	}
	return nil
}

func runBatch(ctx context.Context, a *app, args []string) error {
	fs := a.commandFlags("batch")
	file := fs.StringP("file", "f", "", "JSON array of {\"model\", \"data\"} requests (required)")
	concurrency := fs.IntP("concurrency", "c", 0, "maximum concurrent requests (default: batch_concurrency from config)")
	if done, err := a.parse(fs, args); done || err != nil {
		return err
	}
	if *file == "" {
		return usagef("batch: --file is required")
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}
	var reqs []freeseek.BatchRequest
	if err := json.Unmarshal(raw, &reqs); err != nil {
		return usagef("batch: %s must hold a JSON array of requests: %v", *file, err)
	}

	client, err := a.newClient(ctx, nil)
	if err != nil {
		return err
	}
	results := client.BatchInfer(ctx, reqs, *concurrency)
	if err := a.printJSON(results); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(results))
	}
	return nil
}

func runModels(ctx context.Context, a *app, args []string) error {
	fs := a.commandFlags("models")
	if done, err := a.parse(fs, args); done || err != nil {
		return err
	}
	client, err := a.newClient(ctx, nil)
	if err != nil {
		return err
	}
	models, err := client.ListModels(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(models)
}

func runInfo(ctx context.Context, a *app, args []string) error {
	return a.modelCommand(ctx, "info", args, (*freeseek.Client).GetModelInfo)
}

func runSchema(ctx context.Context, a *app, args []string) error {
	return a.modelCommand(ctx, "schema", args, (*freeseek.Client).GetModelSchema)
}

func (a *app) modelCommand(ctx context.Context, name string, args []string,
	get func(*freeseek.Client, context.Context, string) (freeseek.Result, error),
) error {
	fs := a.commandFlags(name)
	if done, err := a.parse(fs, args); done || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("%s: expected exactly one MODEL argument", name)
	}
	client, err := a.newClient(ctx, nil)
	if err != nil {
		return err
	}
	result, err := get(client, ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return a.printJSON(result)
}

func runCodegen(_ context.Context, a *app, args []string) error {
	fs := a.commandFlags("codegen")
	language := fs.StringP("language", "l", "go", "target language: "+strings.Join(codegenLanguages(), ", "))
	model := fs.String("model", "deepseek_v3", "model used in the generated example")
	if done, err := a.parse(fs, args); done || err != nil {
		return err
	}
	code, err := generateBoilerplate(*language, *model)
	if err != nil {
		return &usageError{err: err}
	}
	_, err = fmt.Fprint(a.stdout, code)
	return err
}

func runVersion(_ context.Context, a *app, args []string) error {
	fs := a.commandFlags("version")
	short := fs.Bool("short", false, "print only the version")
	asJSON := fs.Bool("json", false, "print build information as JSON")
	if done, err := a.parse(fs, args); done || err != nil {
		return err
	}
	info := version.Get()
	switch {
	case *asJSON:
		return a.printJSON(info)
	case *short:
		fmt.Fprintln(a.stdout, info.Short())
	default:
		fmt.Fprintln(a.stdout, info.String())
	}
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
