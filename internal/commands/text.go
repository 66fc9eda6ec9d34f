package commands

const commandList = `/start - Show the welcome message
/help - Show all available commands
/status - Show queue and processing state
/remain - Get remaining links as a text file
/stopnow - Pause processing (alias /pause)
/startnow - Resume processing (alias /resume)
/clean - Clear all queued links (alias /clear)
/skip N - Skip the next N queued links
/cap N <caption> - Add a caption to the next N videos`

const welcomeText = `🤖 Welcome to linkrelay!

I download videos from links and post them to the target chat.

🔹 Send me a video URL to download
🔹 Upload a .txt file with multiple links (one per line)
🔹 Videos are sent to the target chat automatically

Commands:
` + commandList

const helpText = `📋 Admin commands:

` + commandList + `

How to use:
1. Send a single video URL
2. Or upload a .txt file with one link per line
3. Videos are sent to the target chat in order
4. Progress updates arrive after each video`
