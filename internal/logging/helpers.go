package logging

// Package-level helpers so call sites read logging.Mediator(...) instead
// of logging.Get(logging.CategoryMediator).Info(...). Info-level helpers
// carry no suffix; debug-level helpers carry a Debug suffix.

// Boot logs startup progress.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// Mediator logs message routing at info level.
func Mediator(format string, args ...interface{}) { Get(CategoryMediator).Info(format, args...) }

// MediatorDebug logs message routing at debug level.
func MediatorDebug(format string, args ...interface{}) { Get(CategoryMediator).Debug(format, args...) }

// Pipeline logs query orchestration at info level.
func Pipeline(format string, args ...interface{}) { Get(CategoryPipeline).Info(format, args...) }

// PipelineDebug logs query orchestration at debug level.
func PipelineDebug(format string, args ...interface{}) { Get(CategoryPipeline).Debug(format, args...) }

// Notes logs note store activity.
func Notes(format string, args ...interface{}) { Get(CategoryNotes).Info(format, args...) }

// NotesDebug logs note store activity at debug level.
func NotesDebug(format string, args ...interface{}) { Get(CategoryNotes).Debug(format, args...) }

// Store logs SQLite-level activity at debug level.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// Embedding logs embedding engine activity.
func Embedding(format string, args ...interface{}) { Get(CategoryEmbedding).Info(format, args...) }

// External logs external source retrieval.
func External(format string, args ...interface{}) { Get(CategoryExternal).Info(format, args...) }

// Website logs site manager activity.
func Website(format string, args ...interface{}) { Get(CategoryWebsite).Info(format, args...) }

// Profile logs profile store activity.
func Profile(format string, args ...interface{}) { Get(CategoryProfile).Info(format, args...) }

// Conversation logs conversation store activity.
func Conversation(format string, args ...interface{}) { Get(CategoryConversation).Info(format, args...) }

// API logs LLM API calls.
func API(format string, args ...interface{}) { Get(CategoryAPI).Info(format, args...) }
