// Package password hashes passwords with Argon2id and provides a
// goSession.UserValidator over an application credential lookup.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters;
// [Validator] can rehash them on the next successful login via [WithRehash].
//
// The package never stores passwords and never logs them.
package password
