package csv

import (
	"github.com/ajitpratap0/brightsync/pkg/connector/registry"
)

func init() {
	registry.MustRegisterDestination(DestinationName, New)
}
