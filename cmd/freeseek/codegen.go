package main

import (
	"bytes"
	"fmt"
	"slices"
	"text/template"

	"github.com/freeseek/freeseek-go/config"
)

var boilerplates = map[string]*template.Template{
	"go": template.Must(template.New("go").Parse(`package main

import (
	"context"
	"fmt"
	"log"

	freeseek "github.com/freeseek/freeseek-go"
	"github.com/freeseek/freeseek-go/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	client, err := freeseek.New(*cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	result, err := client.Infer(context.Background(), "{{.Model}}", map[string]any{
		"prompt": "Hello, world!",
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result)
}
`)),
	"python": template.Must(template.New("python").Parse(`from freeseek.api import FreeseekAPI

api_client = FreeseekAPI(api_key="YOUR_API_KEY")
result = api_client.infer("{{.Model}}", {"prompt": "Hello, world!"})
print(result)
`)),
	"curl": template.Must(template.New("curl").Parse(`TOKEN=$(curl -s -X POST {{.AuthURL}} \
  -H 'Content-Type: application/json' \
  -d '{"api_key": "'"$FREESEEK_API_KEY"'"}' | jq -r .access_token)

curl -s -X POST {{.BaseURL}}/infer \
  -H "Authorization: Bearer $TOKEN" \
  -H 'Content-Type: application/json' \
  -d '{"model": "{{.Model}}", "data": {"prompt": "Hello, world!"}}'
`)),
}

func codegenLanguages() []string {
	langs := make([]string, 0, len(boilerplates))
	for lang := range boilerplates {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

func generateBoilerplate(language, model string) (string, error) {
	tmpl, ok := boilerplates[language]
	if !ok {
		return "", fmt.Errorf("codegen: unsupported language %q (supported: %v)", language, codegenLanguages())
	}
	cfg := config.Default()
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		Model   string
		BaseURL string
		AuthURL string
	}{Model: model, BaseURL: cfg.BaseURL, AuthURL: cfg.AuthURL})
	if err != nil {
		return "", fmt.Errorf("codegen: %w", err)
	}
	return buf.String(), nil
}
