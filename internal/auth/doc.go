// Package auth provides authentication for helplane.
//
// # Tokens
//
// Bearer credentials are HS256-signed JWTs carrying "sub" (user ID) and
// "role" claims:
//
//	verifier := auth.NewJWTVerifier([]byte(secret))
//	token, _ := verifier.Generate(auth.Identity{ID: userID, Role: role}, 24*time.Hour)
//	identity, err := verifier.Verify(token)
//
// The resolved Identity is immutable: it is attached to an HTTP request
// context by Middleware, or bound to a websocket connection at upgrade time,
// before any frame is processed.
//
// # Passwords
//
// Account passwords are hashed with bcrypt (HashPassword/CheckPassword).
// Plaintext passwords exist only inside the signup and login handlers.
//
// # Websocket admission
//
// Browser websocket clients cannot set an Authorization header on the
// upgrade request, so TokenFromRequest also accepts a "token" query
// parameter. Upgrade requests failing verification are rejected with 401 and
// never reach the session dispatcher.
package auth
