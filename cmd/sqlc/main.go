// Генератор обвязки sqlc: для каждого файла запросов из .sqlc.base.yaml
// собирает одноразовый sqlc.yaml (пакет = имя каталога над queries/)
// и зовёт sqlc generate. Так один базовый конфиг обслуживает все пакеты.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"gopkg.in/yaml.v2"

	"github.com/spf13/viper"
)

const generatedConfigName = "sqlc.yaml"

func configForQueries(engine *viper.Viper, queriesFile string) (string, error) {
	var (
		dir, _      = filepath.Split(queriesFile)
		parts       = strings.Split(dir, string(os.PathSeparator))
		packageName = parts[len(parts)-2]
	)
	engine.Set("gen.go.package", packageName)
	engine.Set("queries", queriesFile)
	engine.Set("gen.go.out", dir)

	engineSettings := engine.AllSettings()
	delete(engineSettings, "source")

	resultConfig := viper.New()
	resultConfig.Set("version", viper.GetString("version"))
	resultConfig.Set("sql", []interface{}{engineSettings})

	bs, err := yaml.Marshal(resultConfig.AllSettings())
	if err != nil {
		return "", errors.Wrap(err, "marshal config to yaml")
	}

	_ = os.Remove(generatedConfigName)
	if err := os.WriteFile(generatedConfigName, bs, 0o644); err != nil {
		return "", errors.Wrap(err, "write sqlc.yaml")
	}
	return generatedConfigName, nil
}

func callSqlc(configFile string) error {
	cmd := exec.Command("sqlc", "generate", "--file", configFile)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("call sqlc: %s", string(output)))
	}
	return nil
}

func main() {
	viper.SetConfigName(".sqlc.base")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	sources := viper.GetStringSlice("sql.0.source")
	if len(sources) == 0 {
		panic("has no sql.0.source in config")
	}

	files := make([]string, 0)
	for _, pattern := range sources {
		f, err := filepath.Glob(pattern)
		if err != nil {
			panic(fmt.Errorf("get file glob: %w", err))
		}
		files = append(files, f...)
	}

	engine := viper.Sub("sql.0")
	engine.Set("schema", viper.GetString("sql.0.schema"))

	for _, file := range files {
		configFile, err := configForQueries(engine, file)
		if err != nil {
			panic(fmt.Errorf("can't generate result config: %w", err))
		}
		if err := callSqlc(configFile); err != nil {
			panic(fmt.Errorf("call sqlc: %w", err))
		}
		fmt.Printf("%s file complete\n", file)
	}
	_ = os.Remove(generatedConfigName)
	fmt.Println("done")
}
