package config

import "github.com/joho/godotenv"

// LoadDotEnv reads a .env file into the environment.
// Variables already set in the process environment take precedence.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}
