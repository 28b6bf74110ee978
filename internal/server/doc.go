// Package server provides HTTP routing, middleware and the handlers behind `lottiekit serve`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /inspect").
//
// # Handlers
//
// [CompositionHandler] serves bundled compositions and downloaded copies by file name, which
// makes a running server a convenient origin for URL sources during development.
//
// [InspectHandler] resolves any source string and answers with the JSON report that
// `lottiekit inspect --format json` prints. Load errors map to HTTP statuses by kind.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
