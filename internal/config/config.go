package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// envPattern ищет ${VAR} и ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults расширяет переменные окружения с поддержкой дефолтных значений
// Формат: ${VAR:-default}
func expandEnvWithDefaults(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Извлекаем имя переменной и значение по умолчанию
		matches := envPattern.FindStringSubmatch(match)
		if len(matches) < 2 {
			return match
		}

		varName := matches[1]
		defaultValue := ""
		if len(matches) > 2 {
			defaultValue = matches[2]
		}

		// Пытаемся получить значение из переменных окружения
		value := os.Getenv(varName)
		if value == "" {
			// Если переменная не установлена, используем значение по умолчанию
			return defaultValue
		}
		return value
	})
}

// InitConfig читает конфигурационный файл и возвращает экземпляр конфигурации
// Использует generic для работы с произвольным типом конфигурации
func InitConfig[C any](configFile string) (*C, error) {
	return InitConfigFs[C](afero.NewOsFs(), configFile)
}

// InitConfigFs как InitConfig, но читает файл из fs
func InitConfigFs[C any](fsys afero.Fs, configFile string) (*C, error) {
	v := viper.New()
	v.SetFs(fsys)
	ext := strings.TrimLeft(filepath.Ext(configFile), ".")

	v.SetConfigFile(configFile)
	v.SetConfigType(ext)
	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("v.ReadInConfig: %w", err)
	}

	// Заменяем ${VAR:-default} на значения окружения
	for _, k := range v.AllKeys() {
		if value := v.GetString(k); value != "" {
			v.Set(k, typed(expandEnvWithDefaults(value)))
		}
	}

	cfg := new(C)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("v.Unmarshal: %w", err)
	}

	return cfg, nil
}

// typed возвращает bool или int, если строка на них похожа, иначе саму строку
func typed(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// InitOptionalConfig как InitConfigFs, но отсутствующий файл дает пустую
// конфигурацию вместо ошибки
func InitOptionalConfig[C any](fsys afero.Fs, configFile string) (*C, error) {
	exists, err := afero.Exists(fsys, configFile)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if !exists {
		return new(C), nil
	}
	return InitConfigFs[C](fsys, configFile)
}
