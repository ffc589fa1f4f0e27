package a3interface

/*
#include <stdlib.h>
#include <stdio.h>
#include <string.h>
*/
import "C"

import (
	"sync"

	"github.com/OCAP2/firecontrol/internal/dispatcher"
)

// configStruct is the central configuration used by this library
type configStruct struct {
	mu sync.RWMutex

	// rvExtensionVersion is the value that will be returned when the extension is first called by Arma
	rvExtensionVersion string

	// dispatcher handles event routing
	dispatcher *dispatcher.Dispatcher
}

// Init method initializes the config struct
func (c *configStruct) Init() {
	c.rvExtensionVersion = "No version set"
}

func (c *configStruct) version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rvExtensionVersion
}

func (c *configStruct) getDispatcher() *dispatcher.Dispatcher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dispatcher
}

// SetVersion sets the version string that will be returned when the extension is first called by Arma
func SetVersion(version string) {
	Config.mu.Lock()
	Config.rvExtensionVersion = version
	Config.mu.Unlock()
}

// SetDispatcher sets the event dispatcher for handling commands
func SetDispatcher(d *dispatcher.Dispatcher) {
	Config.mu.Lock()
	Config.dispatcher = d
	Config.mu.Unlock()
}

// GetDispatcher returns the configured dispatcher, or nil if not set
func GetDispatcher() *dispatcher.Dispatcher {
	return Config.getDispatcher()
}
