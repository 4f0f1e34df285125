// Package http provides HTTP handlers and middleware for the event RSVP API.
//
// The router exposes the following endpoints:
//   - POST /calendar/invites: adds an attendee to the calendar entries of the
//     listed events. Body: {"event_ids":[...],"email"}. Response: {"success":true}.
//   - GET /events, POST /events: list (query proposer_id, collection_id,
//     include_deleted) and propose events exchanging the `eventDTO` payload defined
//     in event_handler.go.
//   - PUT /events, DELETE /events: batch update ({"events":[...]}) and batch
//     soft delete ({"event_ids":[...]}). Linked events are pushed to Google
//     Calendar and the response lists {"remote_event_id","event_id"} pairs.
//   - GET /events/{hash}, GET /events/{hash}/ics: a single event with its RSVPs,
//     or the same event rendered as text/calendar.
//   - POST /rsvp/{hash}: RSVP by email or wallet address, optionally adding the
//     attendee to the calendar entry.
//   - GET /rsvp/{hash}, DELETE /rsvp/{hash}?attendee_id=: list the event's
//     RSVPs, or cancel one. The attendee id may also be sent as a JSON body.
//   - GET /users, POST /users, GET /users/{id}, PUT /users/{id}, DELETE /users/{id}.
//   - GET /collections?owner_id=, POST /collections, GET /collections/{id},
//     PUT /collections/{id}/events, DELETE /collections/{id}/events.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
