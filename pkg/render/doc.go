/*
Package render turns view names into response bodies.

A Pipeline resolves a view through a registered engine, consults the
response cache, executes the view with its variables shaped per the
configured isolation mode, post-processes the output (error-banner
scanning, HTML minification, header computation), writes the cache
and either returns the result or emits it onto an
http.ResponseWriter.

Engines are pluggable behind a small contract: the built-in
NativeEngine executes Go template files with section composition
through pkg/layout, and ComponentEngine serves pre-compiled templ
components. Failures divide into recognized ones, which are logged
and substituted with an error page (or suppressed entirely under the
silent configuration), and everything else, which propagates as a
RuntimeError naming the stage that failed.
*/
package render
