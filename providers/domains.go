// Package providers holds the domain table: which capability contracts the
// application knows about and where their providers contribute.
//
// Provider packages are activated by importing them, normally through
// providers/all.
package providers

import (
	"github.com/pulseboard/pulse/providers/ads"
	"github.com/pulseboard/pulse/providers/analytics"
	"github.com/pulseboard/pulse/providers/finance"
	"github.com/pulseboard/pulse/providers/llm"
	"github.com/pulseboard/pulse/providers/notify"
	"github.com/pulseboard/pulse/registry"
)

// Table returns the compiled-in domain table in discovery order.
func Table() registry.Table {
	return registry.Table{
		registry.Bind[finance.Provider](finance.DomainKey, finance.Extensions.Name()),
		registry.Bind[ads.Platform](ads.DomainKey, ads.Extensions.Name()),
		registry.Bind[analytics.Provider](analytics.DomainKey, analytics.Extensions.Name()),
		registry.Bind[notify.Notifier](notify.DomainKey, notify.Extensions.Name()),
		registry.Bind[llm.Model](llm.DomainKey, llm.Extensions.Name()),
	}
}
