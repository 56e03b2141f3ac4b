package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STOCKMASTER_TEST_MODE") == "" {
			_ = os.Setenv("STOCKMASTER_TEST_MODE", "1")
		}
	})
}
