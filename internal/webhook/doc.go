// Package webhook is the HTTP client for the assistant backend.
//
// # Overview
//
// The backend exposes one absolute webhook URL per operation. Every request
// carries the static token in the api_token header; mutating calls send a
// JSON body.
//
//	authenticate      POST {login}               {email, password}
//	list assistants   GET  {assistants}?user_id=
//	get assistant     GET  {assistant_detail}?id=
//	list columns      GET  {columns}?assistant_id=
//	list reports      GET  {reports}?assistant_id=
//	update assistant  PUT  {assistant_update}    {id, nome, prompt, id_cliente, colunas?}
//
// # Normalization
//
// The backend wraps responses inconsistently, so every body goes through
// Normalize before a named field is read:
//
//	[obj, ...]        -> obj
//	[] or [null, ...] -> absent
//	{...}             -> the object
//	null, empty       -> absent
//	scalar            -> absent
//
// List endpoints then read data, colunas or relatorios from the payload; an
// absent field is an empty list.
//
// # Errors
//
// Failures are *RequestError values wrapping ErrAuthenticationFailed,
// ErrRequestFailed or ErrNotFound. Their Error text is the message shown to
// the user.
package webhook
