// Package schema compiles HCL schema text into engine configuration and a datamodel.
//
// A schema consists of exactly one datasource block, any number of generator blocks,
// and model blocks:
//
//	datasource "db" {
//	  provider = "postgresql"
//	  url      = env("DATABASE_URL")
//	  adapter  = "pgx" // optional: pgx, sql or sqlx
//	}
//
//	generator "client" {
//	  provider         = "go"
//	  preview_features = ["tracing"]
//	}
//
//	model "User" {
//	  table = "users" // optional
//
//	  field "id" {
//	    type          = "Int"
//	    id            = true
//	    autoincrement = true
//	  }
//
//	  field "email" {
//	    type   = "String"
//	    unique = true
//	  }
//	}
//
// Datasource URLs stay unevaluated until they are resolved against an environment,
// where the env() function looks variables up.
// Every problem is reported as Diagnostics that render with source snippets.
package schema
