package main

import "dietChallengeAPI/cmd/challengectl/root"

func main() {
	root.Execute()
}
