package memory

import (
	"testing"

	"github.com/felixgeelhaar/orbit/domain/lock"
	"github.com/felixgeelhaar/orbit/domain/lock/locktest"
)

func TestLocker(t *testing.T) {
	t.Parallel()

	locktest.Run(t, func(t *testing.T) lock.Locker { return NewLocker() })
}
