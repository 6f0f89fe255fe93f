// Package config loads healops configuration.
//
// Sources, lowest precedence first:
//  1. Defaults (see Default).
//  2. A YAML file, when a path is given.
//  3. Environment variables, where the process environment wins over
//     values read from .env.local and then .env.
//
// Credentials may be literal, ${VAR} references or secretref: references;
// Resolve turns them into values through a secret.Resolver.
package config
