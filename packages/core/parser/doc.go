// Package parser reads apitest scenario files into an AST.
//
// A scenario file is a sequence of HTTP requests, each optionally
// followed by the literal response the author expects back and by
// assertion, capture, and db blocks:
//
//	### Submit Job
//	POST {{baseUrl}}/api/jobs
//	Content-Type: application/json
//
//	{"input": "data.csv"}
//
//	HTTP/1.1 201 Created
//	Content-Type: application/json
//
//	{"id": [[JOBID]], "status": "pending"}
//
// The expected body is a template: [[NAME]] placeholders extract values
// from the response, and {{NAME}} references substitute values captured
// by earlier requests before the request is sent.
package parser
