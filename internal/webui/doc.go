// Package webui serves the browser interface of the assistant admin.
//
// Every browser gets an aa_browser cookie holding a UUID. The id selects the
// browser's screen.Controller from the registry and namespaces its saved
// session, so two tabs of one browser share a screen while two browsers
// never do.
//
// Routes:
//
//	GET  /                         redirect to the current screen
//	GET  /login, POST /login       login form
//	POST /logout                   from Home only
//	GET  /home                     assistant list, or the dashboard in the single variant
//	POST /reload                   fetch the current screen again
//	GET  /assistants/{id}/edit     edit form
//	POST /assistants/{id}/edit     action=save|add_column|remove_column, index
//	GET  /assistants/{id}/reports  report cards (multi variant)
//	POST /back                     return to Home
//	POST /dismiss                  close the current alert
//
// List screens take ?q= and ?page=. With an HX-Request header only the
// table fragment is returned.
//
// A URL that does not match the controller's screen redirects to the screen
// the controller is on; the controller, not the URL, owns navigation.
//
// All POSTs carry a double-submit CSRF token:
//
//	<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
package webui
