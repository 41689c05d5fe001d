package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var linksCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bapvault_oauth_links_created",
	Help: "Number of OAuth links written",
})

var linkConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bapvault_oauth_link_conflicts",
	Help: "Number of link attempts that hit an existing mapping",
})

var linkTransfers = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bapvault_oauth_link_transfers",
	Help: "Number of password-verified mapping transfers",
})

var sessionRestoreFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bapvault_session_restore_failures",
	Help: "Number of post-link session restorations that forced a re-login",
})

var tokenValidations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bapvault_onetime_token_validations",
	Help: "Number of device-link and export tokens consumed",
})

var backupWrites = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bapvault_backup_writes",
	Help: "Number of backup blobs stored",
})
