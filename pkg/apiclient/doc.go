// Package apiclient talks to the remote modeling API: it fetches the OpenAPI
// document, lists the available generation forms and invokes operations with
// JSON bodies. Spec fetches are de-duplicated and sequenced so the most recent
// completed request owns the cached document.
package apiclient
