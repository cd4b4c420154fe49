// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package supervisor provides the suture process supervisor tree for dialogsync.

	dialogsync (root)
	├── pipeline-layer
	│   └── consumer-pool
	├── ingest-layer
	│   ├── stream-manager
	│   └── bus-router
	└── api-layer
	    └── http-server

Services live in the services subpackage and adapt each component's blocking
Run method to suture.Service. Supervisor events are logged through sutureslog
into the zerolog-backed slog handler from the logging package.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	tree.AddPipelineService(services.NewPoolService(pool, ch, drainTimeout))
	tree.AddIngestService(services.NewStreamService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, shutdownTimeout))
	err = tree.Serve(ctx)
*/
package supervisor
