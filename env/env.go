package env

import (
	"strings"
	"sync"

	"github.com/Sh4yy/FeedStream/service/logger"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validators = map[string][]string{}

var v = validator.New()

var validatorsMu = &sync.Mutex{}

// RegisterValidation registers validator tags to run against an env var
// whenever it is read. Failing tags are logged, not fatal.
func RegisterValidation(name string, tags ...string) {
	validatorsMu.Lock()
	defer validatorsMu.Unlock()
	name = strings.ToUpper(name)
	validators[name] = append(validators[name], tags...)
}

func validate(name string) {
	validatorsMu.Lock()
	defer validatorsMu.Unlock()
	for _, tag := range validators[name] {
		if err := v.Var(viper.Get(name), tag); err != nil {
			logger.For(nil).Errorf("invalid env var: %s, tag: %s, err: %s", name, tag, err.Error())
		}
	}
}

// GetString returns the string value of the env var with the given name
func GetString(name string) string {
	name = strings.ToUpper(name)
	validate(name)
	return viper.GetString(name)
}

// GetInt returns the int value of the env var with the given name
func GetInt(name string) int {
	name = strings.ToUpper(name)
	validate(name)
	return viper.GetInt(name)
}

// GetBool returns the bool value of the env var with the given name
func GetBool(name string) bool {
	name = strings.ToUpper(name)
	validate(name)
	return viper.GetBool(name)
}
