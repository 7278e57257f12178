package main

import "github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/cmd"

func main() {
	cmd.Execute()
}
