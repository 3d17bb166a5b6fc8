package storage

import (
	"fmt"
	"sort"
	"sync"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverType)
)

// RegisterDriver adds a driver type to the driver registry.
// This is typically called from init() functions in storage plugin packages.
func RegisterDriver(dt DriverType) {
	driversMu.Lock()
	defer driversMu.Unlock()

	name := dt.Name()
	if _, exists := drivers[name]; exists {
		panic(fmt.Sprintf("storage driver %q already registered", name))
	}

	drivers[name] = dt
}

// LookupDriver returns a registered driver type by name
func LookupDriver(name string) (DriverType, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	dt, ok := drivers[name]
	return dt, ok
}

// Drivers returns all registered driver type names, sorted
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
