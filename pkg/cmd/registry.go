// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"log/slog"

	"github.com/vyomtech/automation/pkg/actions/email"
	"github.com/vyomtech/automation/pkg/actions/lead"
	"github.com/vyomtech/automation/pkg/actions/notification"
	"github.com/vyomtech/automation/pkg/actions/sms"
	"github.com/vyomtech/automation/pkg/actions/tag"
	"github.com/vyomtech/automation/pkg/actions/task"
	"github.com/vyomtech/automation/pkg/actions/webhook"
	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/registry"
)

// NewRegistry builds a registry with every native action handler registered.
func NewRegistry(logger *slog.Logger, publisher eventbus.EventPublisher) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterAction(task.NewActionFactory(publisher))
	reg.RegisterAction(email.NewActionFactory(publisher))
	reg.RegisterAction(sms.NewActionFactory(publisher))
	reg.RegisterAction(notification.NewActionFactory(publisher))
	reg.RegisterAction(lead.NewActionFactory(publisher))
	reg.RegisterAction(tag.NewActionFactory(publisher))
	reg.RegisterAction(webhook.NewActionFactory())

	return reg
}
