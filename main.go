package main

import (
	"github.com/mariuswilms/beanstalk/cmd"
)

func main() {
	cmd.Execute()
}
