//go:build linux

// Package curio is tcp networking on io_uring. Dial and Listen hand out
// streams driven by a shared reference counted driver; every connection
// pins it and the last close shuts it down.
package curio

import (
	"context"
	"sync"

	"github.com/brickingsoft/curio/pkg/aio"
	"github.com/brickingsoft/curio/pkg/reference"
)

var (
	driverMu       sync.Mutex
	driverInstance *reference.Pointer[*aio.Driver]
	driverOptions  []aio.Option
)

// Preset stores driver options applied when the shared driver is built.
// Call it before the first Dial or Listen, later calls only affect the
// next build.
func Preset(options ...aio.Option) {
	driverMu.Lock()
	driverOptions = append(driverOptions, options...)
	driverMu.Unlock()
}

// Pin acquires the shared driver, building and starting it on first use.
// Pair every Pin with one Unpin.
func Pin() (d *aio.Driver, err error) {
	driverMu.Lock()
	defer driverMu.Unlock()
	if driverInstance == nil {
		instance, newErr := aio.New(driverOptions...)
		if newErr != nil {
			err = newErr
			return
		}
		instance.Start(context.Background())
		driverInstance = reference.Make(instance)
	}
	d = driverInstance.Value()
	return
}

// Unpin releases one reference; the driver shuts down when the last
// holder lets go.
func Unpin() (err error) {
	driverMu.Lock()
	defer driverMu.Unlock()
	if driverInstance == nil {
		return
	}
	err = driverInstance.Close()
	if driverInstance.Count() <= 0 {
		driverInstance = nil
	}
	return
}
