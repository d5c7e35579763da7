// Package kit defines the surface between stagehand and its host chat
// application: transcript records, chat activity events, the event bus the
// adapters publish on, and the collaborator interfaces (command executor,
// transcript accessor) the engine consumes.
package kit
