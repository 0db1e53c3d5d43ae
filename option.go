package duet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/duet/channel"
	"github.com/yaoapp/kun/log"
	"gopkg.in/yaml.v3"
)

// Option the runtime option
type Option struct {
	Name        string        `json:"name,omitempty"`
	Dev         bool          `json:"dev,omitempty"`
	Script      bool          `json:"script,omitempty"`
	ScriptCache int           `json:"scriptCache,omitempty"`
	Worklets    string        `json:"worklets,omitempty"`
	Watch       bool          `json:"watch,omitempty"`
	Timeout     int           `json:"timeout,omitempty"` // milliseconds
	Listen      string        `json:"listen,omitempty"`
	Protocols   []string      `json:"protocols,omitempty"`
	Limit       channel.Limit `json:"limit,omitempty"`
	LogLevel    string        `json:"logLevel,omitempty"`
}

var levels = map[string]log.Level{
	"trace": log.TraceLevel,
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarnLevel,
	"error": log.ErrorLevel,
	"fatal": log.FatalLevel,
}

// LoadOption read the option from a .yml .yaml or .json file
func LoadOption(file string) (*Option, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(file))
	switch ext {
	case ".yml", ".yaml":
		var raw interface{}
		err = yaml.Unmarshal(data, &raw)
		if err != nil {
			return nil, fmt.Errorf("%s %s", file, err.Error())
		}
		data, err = jsoniter.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%s %s", file, err.Error())
		}

	case ".json":

	default:
		return nil, fmt.Errorf("%s the option file should be .yml .yaml or .json", file)
	}

	option := &Option{}
	err = jsoniter.Unmarshal(data, option)
	if err != nil {
		return nil, fmt.Errorf("%s %s", file, err.Error())
	}

	option.Validate()
	return option, nil
}

// Validate set the default values and clamp the out of range ones
func (option *Option) Validate() {

	if option.Name == "" {
		option.Name = "duet"
	}

	if option.ScriptCache == 0 {
		option.ScriptCache = 256
	}

	if option.ScriptCache > 4096 {
		log.Warn("[duet] the maximum value of scriptCache is 4096")
		option.ScriptCache = 4096
	}

	if option.Timeout == 0 {
		option.Timeout = 5000
	}

	if option.Timeout < 10 {
		log.Warn("[duet] the minimum value of timeout is 10ms")
		option.Timeout = 10
	}

	if option.Timeout > 600000 {
		log.Warn("[duet] the maximum value of timeout is 600000ms")
		option.Timeout = 600000
	}

	if option.Listen == "" {
		option.Listen = "127.0.0.1:5099"
	}

	if option.Limit.MaxMessage > 104857600 {
		log.Warn("[duet] the maximum value of limit.max-message is 104857600(100M)")
		option.Limit.MaxMessage = 104857600
	}

	if option.Watch && option.Worklets == "" {
		log.Warn("[duet] watch is enabled without worklets directory, ignored")
		option.Watch = false
	}

	if option.LogLevel == "" {
		option.LogLevel = "info"
	}

	if _, has := levels[strings.ToLower(option.LogLevel)]; !has {
		log.Warn("[duet] unknown logLevel %s, use info", option.LogLevel)
		option.LogLevel = "info"
	}
}

// ApplyLogLevel set the log level of the process
func (option *Option) ApplyLogLevel() {
	if level, has := levels[strings.ToLower(option.LogLevel)]; has {
		log.SetLevel(level)
	}
}
