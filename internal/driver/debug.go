package driver

import (
	"strings"
	"time"

	"github.com/leonardcser/hostcache/internal/logger"
)

// Debug wraps any Driver and logs every call at debug level. The wrapped
// driver stays free of logging concerns.
type Debug struct {
	driver Driver
}

var _ Driver = (*Debug)(nil)

// NewDebug creates a debug wrapper around an existing driver.
func NewDebug(d Driver) *Debug {
	return &Debug{driver: d}
}

func (d *Debug) GetData(path []string) (*Entry, bool) {
	e, ok := d.driver.GetData(path)
	if ok {
		logger.Debugf("GetData %s: HIT size=%d", fmtPath(path), len(e.Data))
	} else {
		logger.Debugf("GetData %s: MISS", fmtPath(path))
	}
	return e, ok
}

func (d *Debug) StoreData(path []string, data []byte, expiration time.Time) bool {
	ok := d.driver.StoreData(path, data, expiration)
	logger.Debugf("StoreData %s: size=%d expires=%s ok=%t",
		fmtPath(path), len(data), expiration.Format(time.RFC3339), ok)
	return ok
}

func (d *Debug) Clear(path []string) bool {
	ok := d.driver.Clear(path)
	logger.Debugf("Clear %s: ok=%t", fmtPath(path), ok)
	return ok
}

func (d *Debug) Purge() bool {
	ok := d.driver.Purge()
	logger.Debugf("Purge: ok=%t", ok)
	return ok
}

func (d *Debug) IsPersistent() bool { return d.driver.IsPersistent() }

func fmtPath(path []string) string {
	if len(path) == 0 {
		return "/"
	}
	return "/" + strings.Join(path, "/")
}
